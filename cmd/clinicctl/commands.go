package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository/postgres"
	auditService "github.com/jwalitptl/dental-verify/internal/service/audit"
	clinicService "github.com/jwalitptl/dental-verify/internal/service/clinic"
	"github.com/jwalitptl/dental-verify/internal/service/expiry"
	geographyService "github.com/jwalitptl/dental-verify/internal/service/geography"
	verificationService "github.com/jwalitptl/dental-verify/internal/service/verification"
	"github.com/jwalitptl/dental-verify/pkg/messaging"
	"github.com/jwalitptl/dental-verify/pkg/messaging/redis"
	"github.com/jwalitptl/dental-verify/pkg/qr"
	"github.com/jwalitptl/dental-verify/pkg/security"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <license-number>",
		Short: "Verify a license and record the attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, _ := cmd.Flags().GetString("method")
			if !model.VerificationMethod(method).Valid() {
				return fmt.Errorf("unknown verification method %q", method)
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			audit := auditService.NewService(e.store, auditService.WithLogger(e.log))
			svc := verificationService.NewService(e.store.Clinics(), audit, nil, e.log)
			res, err := svc.Verify(ctx, verificationService.Request{
				LicenseNumber: args[0],
				Method:        model.VerificationMethod(method),
				UserAgent:     "clinicctl",
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("method", string(model.VerificationMethodManualEntry), "Verification method: manual_entry, qr_scan or image_upload")
	return cmd
}

// parseNow reads the --now flag. Empty means the current time.
func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: %w", s, err)
	}
	return d.Time(), nil
}

func recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute license statuses from expiry dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("now")
			now, err := parseNow(raw)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			res, err := expiry.NewService(e.store.Clinics(), nil, e.log).Recompute(ctx, now)
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().String("now", "", "Evaluate expiry as of this date (YYYY-MM-DD)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import clinics from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			res, err := clinicService.NewService(e.store.Clinics(), e.log).ImportCSV(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every clinic as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unknown format %q", format)
			}
			if out == "" {
				out = clinicService.ExportFilename(format, time.Now())
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()
			svc := clinicService.NewService(e.store.Clinics(), e.log)

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			if format == "xlsx" {
				b, err := svc.ExportXLSX(ctx)
				if err != nil {
					return err
				}
				if _, err := f.Write(b); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			}

			w := bufio.NewWriter(f)
			n, err := svc.ExportCSV(ctx, w)
			if err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d clinics to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().String("format", "csv", "Output format: csv or xlsx")
	cmd.Flags().String("out", "", "Output file (default clinics_export_<date>.<format>)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed Jordan's governorates and cities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.store.Close()

			res, err := geographyService.NewService(e.store, e.log).Seed(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr <license-number>",
		Short: "Render the verification QR code of a license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, _ := cmd.Flags().GetInt("size")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = "qr-" + strings.ReplaceAll(args[0], "/", "_") + ".png"
			}
			png, err := qr.RenderPNG(args[0], size)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().Int("size", qr.DefaultSize, "Image edge in pixels")
	cmd.Flags().String("out", "", "Output file (default qr-<license>.png)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the registry schema in the configured PostgreSQL database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			store := postgres.NewStore(db)
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			log.Info("schema up to date", "database", cfg.Database.Name)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream verification events published by the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.RedisEnabled() {
				return errors.New("redis.url is not configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := redis.NewClient(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			broker := redis.NewRedisBroker(client, log.Zerolog())
			defer broker.Close()

			events, err := broker.Subscribe(ctx, messaging.ChannelVerifications)
			if err != nil {
				return err
			}
			return watch(ctx, events, cmd.OutOrStdout())
		},
	}
}

// watch prints one line per event until ctx ends or the channel closes.
func watch(ctx context.Context, events <-chan []byte, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			var ev auditService.Event
			if err := json.Unmarshal(msg, &ev); err != nil || ev.Attempt == nil {
				fmt.Fprintf(w, "%s\n", msg)
				continue
			}
			a := ev.Attempt
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				a.CreatedAt.Format(time.RFC3339), a.LicenseNumber, a.VerificationMethod, a.VerificationStatus)
		}
	}
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for auth.admin_password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is required")
			}
			hash, err := security.NewBcryptHasher(cost).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", 12, "bcrypt cost")
	return cmd
}
