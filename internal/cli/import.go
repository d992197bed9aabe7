package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quizbowl-practice/internal/config"
	pgstore "quizbowl-practice/internal/infra/postgres"
	infraredis "quizbowl-practice/internal/infra/redis"
	"quizbowl-practice/internal/infra/xlsx"
)

// NewImportCmd loads question sets from a spreadsheet into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		file  string
		setID string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import question sets from an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, file, setID)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the workbook")
	cmd.Flags().StringVar(&setID, "set-id", "", "store the first sheet under this set id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, cfg config.Config, path, setID string) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sets, err := xlsx.ReadSets(f, setID)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return fmt.Errorf("%s: no questions found", path)
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.NewSetStore(pool).SaveSets(ctx, sets); err != nil {
		return err
	}

	// drop stale cached copies so running servers pick up the import
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		repo := infraredis.NewSetRepository(client, nil, 0)
		for _, set := range sets {
			if err := repo.Invalidate(ctx, set.ID); err != nil {
				log.Printf("invalidate cached set %s: %v", set.ID, err)
			}
		}
	}

	for _, set := range sets {
		log.Printf("imported set %s (%d questions)", set.ID, len(set.Questions))
	}
	return nil
}
