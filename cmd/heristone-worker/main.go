package main

import (
	"context"
	"errors"
	"os"
	"time"

	"heristone/internal/amqp"
	"heristone/internal/cli"
	gsheet "heristone/internal/sheets/google"
	"heristone/internal/sheets/xlsx"
	"heristone/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting heristone-worker", "backend", cfg.DataBackend)

	if !cfg.ExportEnabled() {
		logger.Error("No export target configured; set GOOGLE_SPREADSHEET_ID or XLSX_EXPORT_PATH")
		os.Exit(1)
	}

	res, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to open storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	var exporters worker.Exporters
	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			ScheduleSheet:   cfg.GoogleScheduleSheetName,
			PaymentsSheet:   cfg.GooglePaymentsSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		exporters = append(exporters, sheetsClient)
	}
	if cfg.XLSXEnabled() {
		workbook, err := xlsx.New(xlsx.Config{
			Path:          cfg.XLSXExportPath,
			ScheduleSheet: cfg.GoogleScheduleSheetName,
			PaymentsSheet: cfg.GooglePaymentsSheetName,
		})
		if err != nil {
			logger.Error("Failed to initialize workbook export", "error", err)
			os.Exit(1)
		}
		logger.Info("Workbook export enabled", "path", workbook.Path())
		exporters = append(exporters, workbook)
	}

	syncWorker := worker.NewSyncWorker(res.Store, exporters, cfg.SyncBatchSize, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic sync only", "interval", cfg.SyncInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
	})

	// Recover changes made while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeWithRetry(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	go syncWorker.Run(ctx, cfg.SyncInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
