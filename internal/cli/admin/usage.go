package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loreworks/mwassist/internal/config"
	"github.com/loreworks/mwassist/internal/database"
)

// UsageCmd returns the usage command, an operator view of daily token spend.
func UsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show recent token usage per wiki and user",
		RunE:  runUsage,
	}

	cmd.Flags().String("wiki", "", "Limit output to one wiki id")
	cmd.Flags().Int("days", 7, "Number of days to include")

	return cmd
}

func runUsage(cmd *cobra.Command, args []string) error {
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
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = 7
	}

	query := `SELECT wiki_id, user_id, usage_date, total_tokens, request_count
	          FROM token_usage
	          WHERE usage_date >= CURRENT_DATE - $1::int`
	queryArgs := []interface{}{days}
	if wikiFilter != "" {
		query += ` AND wiki_id = $2`
		queryArgs = append(queryArgs, wikiFilter)
	}
	query += ` ORDER BY usage_date DESC, wiki_id, user_id`

	rows, err := pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return fmt.Errorf("failed to query token usage: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var wikiID string
		var userID int64
		var usageDate time.Time
		var totalTokens, requestCount int64
		if err := rows.Scan(&wikiID, &userID, &usageDate, &totalTokens, &requestCount); err != nil {
			return fmt.Errorf("failed to scan usage row: %w", err)
		}
		found = true
		fmt.Printf("%s  %-24s user=%-8d tokens=%-10d requests=%d\n",
			usageDate.Format("2006-01-02"), wikiID, userID, totalTokens, requestCount)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !found {
		fmt.Println("no usage recorded in the selected window")
	}
	return nil
}
