package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"storefront-service/config"
	"storefront-service/internal/broker"
	"storefront-service/internal/docstore"
	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	rootCmd := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Manage the storefront catalog",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Overall deadline for the command")

	rootCmd.AddCommand(seedCmd(cfg))
	rootCmd.AddCommand(reparentCmd(cfg))
	rootCmd.AddCommand(recomputeCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore runs fn against the catalog document store under the --timeout deadline.
func withStore(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, docs *docstore.Store) error) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	docs, err := docstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		_ = docs.Close(context.Background())
	}()
	return fn(ctx, docs)
}

func seedCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load categories, products and users from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			seed, err := loadSeed(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return withStore(cmd, cfg, func(ctx context.Context, docs *docstore.Store) error {
				if err := docs.CreateIndexes(ctx); err != nil {
					return err
				}
				if err := seed.apply(ctx, docs); err != nil {
					return err
				}
				report, err := service.NewAncestorMaintainer(docs).RecomputeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories, %d products, %d users (%d products stamped)\n",
					len(seed.Categories), len(seed.Products), len(seed.Users), report.Products)
				return nil
			})
		},
	}
}

func reparentCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reparent [category] [parent]",
		Short: "Move a category under a new parent, or to the root when parent is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID := args[0]
			var parent *string
			if len(args) == 2 {
				parent = &args[1]
			}

			async, _ := cmd.Flags().GetBool("async")
			if async {
				return publishReparent(cmd, cfg, categoryID, parent)
			}

			return withStore(cmd, cfg, func(ctx context.Context, docs *docstore.Store) error {
				report, err := service.NewAncestorMaintainer(docs).Reparent(ctx, categoryID, parent)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s: %d categories rewritten, %d products restamped\n",
					categoryID, report.Categories, report.Products)
				return nil
			})
		},
	}

	cmd.Flags().Bool("async", false, "Publish a command for the catalog worker instead of applying it here")

	return cmd
}

func publishReparent(cmd *cobra.Command, cfg *config.Config, categoryID string, parent *string) error {
	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog)
	defer producer.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	event := &models.CategoryReparentedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCategoryReparented,
			Timestamp: time.Now(),
		},
		CategoryID: categoryID,
		Parent:     parent,
	}
	if err := broker.NewCommandPublisher(producer).PublishCategoryReparented(ctx, event); err != nil {
		return err
	}

	util.GetLogger().Info("Reparent command published",
		zap.String("category_id", categoryID),
		zap.String("event_id", event.EventID))
	fmt.Fprintf(cmd.OutOrStdout(), "Published reparent of %s to %s\n", categoryID, cfg.Kafka.TopicCatalog)
	return nil
}

func recomputeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild every category closure and restamp all products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, cfg, func(ctx context.Context, docs *docstore.Store) error {
				report, err := service.NewAncestorMaintainer(docs).RecomputeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recomputed: %d categories rewritten, %d products restamped\n",
					report.Categories, report.Products)
				return nil
			})
		},
	}
}
