package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"heristone/internal/cli"
	"heristone/internal/core"
	apphttp "heristone/internal/http"
	"heristone/internal/services"
	"heristone/internal/sheets/xlsx"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Apartment installment payment tracker",
		Long: `heristone tracks the installment plan of an apartment purchase:
scheduled installments, the payments recorded against them, add-on options
and the interest accrued on paid-in amounts.

Storage is selected with DATA_BACKEND (memory, file, sqlite or redis).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.AddCommand(
		serveCmd(a),
		showCmd(a),
		statsCmd(a),
		nextCmd(a),
		scheduleCmd(a),
		payCmd(a),
		unpayCmd(a),
		projectCmd(a),
		installmentCmd(a),
		optionCmd(a),
		resetCmd(a),
		exportCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func serveCmd(a *app) *cobra.Command {
	var (
		port      string
		rateLimit int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			defer a.close()

			if port == "" {
				port = a.cfg.Port
			}
			logger := cli.SetupLogger(a.cfg.LogLevel)
			srv := apphttp.NewServer(":"+port, a.svc, apphttp.Options{
				Logger:            logger,
				RequestsPerMinute: rateLimit,
			})

			ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Server shutdown error", "error", err)
				}
			})

			logger.Info("Starting heristone server",
				"port", port,
				"backend", a.cfg.DataBackend,
				"amqp", a.cfg.AMQPEnabled())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on :%s: %w", port, err)
			}

			cli.WaitForShutdown(ctx, done)
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default from PORT)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "Mutating requests per client per minute")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				doc, err := svc.Document(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			})
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show paid, remaining and interest totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				stats, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				printStats(a.out, stats)
				return nil
			})
		},
	}
}

func nextCmd(a *app) *cobra.Command {
	var now string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next installment to pay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseNow(now)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				info, ok, err := svc.NextPayment(ctx, ref)
				if err != nil {
					return err
				}
				printNextPayment(a.out, info, ok)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}

func scheduleCmd(a *app) *cobra.Command {
	var now string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show every installment with its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseNow(now)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				rows, err := svc.Schedule(ctx, ref)
				if err != nil {
					return err
				}
				return printSchedule(a.out, rows)
			})
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}

func payCmd(a *app) *cobra.Command {
	var date, memo string
	cmd := &cobra.Command{
		Use:   "pay <installment-id> <amount>",
		Short: "Record a payment against an installment",
		Example: `  heristone pay 1 60000000
  heristone pay 2 "₩30,000,000" --date 2024-10-15 --memo "계좌이체"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount := core.ParseAmount(args[1])
			paid := core.Today(time.Now())
			if date != "" {
				if paid, err = core.ParseDate(date); err != nil {
					return err
				}
			}

			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				doc, p, err := svc.AddPayment(ctx, id, amount, paid, memo)
				if err != nil {
					return err
				}
				inst, _ := doc.Installment(id)
				fmt.Fprintf(a.out, "Recorded payment %d: %s on %s for %s (paid %s of %s)\n",
					p.ID, core.FormatWon(p.Amount), p.Date, inst.Name,
					core.FormatWon(inst.PaidAmount()), core.FormatWon(inst.PlannedAmount))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Payment date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&memo, "memo", "", "Free-text note")
	return cmd
}

func unpayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unpay <installment-id> <payment-id>",
		Short: "Delete a recorded payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			paymentID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				if _, err := svc.DeletePayment(ctx, id, paymentID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted payment %d from installment %d\n", paymentID, id)
				return nil
			})
		},
	}
}

func projectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Edit the project information",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set name, totalAmount, contractDate, completionDate or defaultInterestRate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				if _, err := svc.UpdateProjectField(ctx, core.ProjectField(args[0]), args[1]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Updated project %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func installmentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "installment",
		Short: "Edit installments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Set name, plannedAmount, dueDate, memo or interestRate",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				if _, err := svc.UpdateInstallmentField(ctx, id, core.InstallmentField(args[1]), args[2]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Updated installment %d %s\n", id, args[1])
				return nil
			})
		},
	})
	return cmd
}

func optionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "option",
		Short: "Manage add-on options",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add",
			Short: "Add an option with a default name and zero price",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
					_, opt, err := svc.AddOption(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "Added option %d (%s)\n", opt.ID, opt.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <id> <field> <value>",
			Short: "Set an option's name or price",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
					if _, err := svc.UpdateOptionField(ctx, id, core.OptionField(args[1]), args[2]); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "Updated option %d %s\n", id, args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"delete"},
			Short:   "Delete an option",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
					if _, err := svc.DeleteOption(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "Deleted option %d\n", id)
					return nil
				})
			},
		},
	)
	return cmd
}

func resetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all data and return to the default plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every recorded payment; pass --yes to confirm")
			}
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				if _, err := svc.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Document reset to defaults")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var out, now string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the schedule and payment log to an Excel workbook",
		Example: `  heristone export --out ./heristone.xlsx
  XLSX_EXPORT_PATH=./data/heristone.xlsx heristone export --now 2024-12-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseNow(now)
			if err != nil {
				return err
			}
			if ref.IsZero() {
				ref = time.Now()
			}
			return a.run(cmd.Context(), func(ctx context.Context, svc *services.DocumentService) error {
				path := out
				if path == "" {
					path = a.cfg.XLSXExportPath
				}
				exporter, err := xlsx.New(xlsx.Config{
					Path:          path,
					ScheduleSheet: a.cfg.GoogleScheduleSheetName,
					PaymentsSheet: a.cfg.GooglePaymentsSheetName,
				})
				if err != nil {
					return fmt.Errorf("%w (use --out)", err)
				}
				doc, err := svc.Document(ctx)
				if err != nil {
					return err
				}
				if err := exporter.Export(ctx, doc, ref); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Exported %d installments to %s\n", len(doc.Plan), exporter.Path())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Workbook path (default from XLSX_EXPORT_PATH)")
	cmd.Flags().StringVar(&now, "now", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseNow turns the --now flag into a reference time; empty means today.
func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}
