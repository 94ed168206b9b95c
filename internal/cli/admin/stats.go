package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loreworks/mwassist/internal/config"
	"github.com/loreworks/mwassist/internal/database"
)

// StatsCmd returns the stats command, an operator view of the index tables.
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-wiki index statistics",
		RunE:  runStats,
	}

	cmd.Flags().String("wiki", "", "Limit output to one wiki id")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	wikiFilter, _ := cmd.Flags().GetString("wiki")

	query := `SELECT wiki_id, COUNT(*), COUNT(DISTINCT page_title)
	          FROM embeddings`
	queryArgs := []interface{}{}
	if wikiFilter != "" {
		query += ` WHERE wiki_id = $1`
		queryArgs = append(queryArgs, wikiFilter)
	}
	query += ` GROUP BY wiki_id ORDER BY wiki_id`

	rows, err := pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var wikiID string
		var vectors, pages int64
		if err := rows.Scan(&wikiID, &vectors, &pages); err != nil {
			return fmt.Errorf("failed to scan stats row: %w", err)
		}
		found = true
		fmt.Printf("%-24s vectors=%-8d pages=%d\n", wikiID, vectors, pages)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !found {
		fmt.Println("no embeddings found")
	}
	return nil
}
