package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/database"
	"github.com/smukkama/matricare/internal/directory"
	"github.com/smukkama/matricare/internal/logger"
	"github.com/smukkama/matricare/internal/queue"
	"github.com/smukkama/matricare/internal/subscription"
	"github.com/smukkama/matricare/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "matricarectl",
		Short:        "MatriCare operator tool",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(patientCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := database.Connect(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.RunMigrations(dir)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Printf("Applied migration: %s\n", name)
			}
			fmt.Printf("%d migration(s) applied\n", len(applied))
			return nil
		},
	}
	cmd.Flags().String("dir", "migrations", "migrations directory")
	return cmd
}

func doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctor accounts",
	}

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			license, _ := cmd.Flags().GetString("license")
			phone, _ := cmd.Flags().GetString("phone")

			return withDirectory(func(ctx context.Context, dir *directory.Directory) error {
				res := dir.RegisterDoctor(ctx, directory.DoctorInput{Name: name, License: license, Phone: phone})
				if err := printJSON(res); err != nil {
					return err
				}
				if !res.Success {
					return errors.New(res.Message)
				}
				return nil
			})
		},
	}
	registerCmd.Flags().String("name", "", "doctor name")
	registerCmd.Flags().String("license", "", "licence number")
	registerCmd.Flags().String("phone", "", "contact phone")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("license")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Look up a doctor by licence number",
		RunE: func(cmd *cobra.Command, args []string) error {
			license, _ := cmd.Flags().GetString("license")

			return withDirectory(func(ctx context.Context, dir *directory.Directory) error {
				doc, err := dir.DoctorByLicense(ctx, license)
				if err != nil {
					return err
				}
				return printJSON(doc)
			})
		},
	}
	getCmd.Flags().String("license", "", "licence number")
	_ = getCmd.MarkFlagRequired("license")

	cmd.AddCommand(registerCmd, getCmd)
	return cmd
}

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage patient documents",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			photo, _ := cmd.Flags().GetString("photo")

			return withDirectory(func(ctx context.Context, dir *directory.Directory) error {
				p, err := dir.AddPatient(ctx, name, photo)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	addCmd.Flags().String("name", "", "patient name")
	addCmd.Flags().String("photo", "", "photo URL")
	_ = addCmd.MarkFlagRequired("name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients with appointments and symptoms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(func(ctx context.Context, dir *directory.Directory) error {
				patients, err := dir.GetAll(ctx)
				if err != nil {
					return err
				}
				return printJSON(patients)
			})
		},
	}

	familyCmd := &cobra.Command{
		Use:   "family",
		Short: "Replace a patient's family email list",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			emails, _ := cmd.Flags().GetStringSlice("emails")

			return withDirectory(func(ctx context.Context, dir *directory.Directory) error {
				if err := dir.UpdateFamily(ctx, id, emails); err != nil {
					return err
				}
				fmt.Printf("Family of %s set to [%s]\n", id, strings.Join(emails, ", "))
				return nil
			})
		},
	}
	familyCmd.Flags().String("id", "", "patient id")
	familyCmd.Flags().StringSlice("emails", nil, "comma-separated family emails")
	_ = familyCmd.MarkFlagRequired("id")

	cmd.AddCommand(addCmd, listCmd, familyCmd)
	return cmd
}

// withDirectory opens the stores the directory needs, runs fn, then
// releases them.
func withDirectory(fn func(ctx context.Context, dir *directory.Directory) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, "console", "matricarectl")
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicUserEvents)
	defer func() {
		if err := producer.Close(); err != nil {
			zapLogger.Warn("Failed to close producer", zap.Error(err))
		}
	}()

	dir := directory.New(db, redisClient, producer, subscription.NewRegistry(0), zapLogger)
	return fn(context.Background(), dir)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
