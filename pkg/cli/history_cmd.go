package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fedquery/internal/format"
)

func newHistoryCmd(client *Client) *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse previously answered questions",
		Example: `  fedq history
  fedq history --status failed
  fedq history --limit 10 --offset 20 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, client, status, limit, offset)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: done, failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entries to skip")

	return cmd
}

func runHistory(cmd *cobra.Command, client *Client, status string, limit, offset int) error {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	resp, err := client.Do("GET", "/history", q, nil)
	if err != nil {
		return err
	}
	if err := CheckError(resp); err != nil {
		return err
	}

	respBody, err := ReadBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if outputStyle(cmd) == format.StyleJSON {
		var pretty interface{}
		if err := json.Unmarshal(respBody, &pretty); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return format.PrintJSON(os.Stdout, pretty)
	}

	var result struct {
		Data []struct {
			ID         string    `json:"id"`
			Question   string    `json:"question"`
			Status     string    `json:"status"`
			Strategy   string    `json:"strategy"`
			RowCount   int64     `json:"row_count"`
			DurationMs int64     `json:"duration_ms"`
			CreatedAt  time.Time `json:"created_at"`
		} `json:"data"`
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	// Question goes last: the final column is unpadded, so long questions
	// do not blow up the table width.
	columns := []string{"created", "status", "strategy", "rows", "ms", "question"}
	rows := make([][]string, 0, len(result.Data))
	for _, e := range result.Data {
		rows = append(rows, []string{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Status,
			e.Strategy,
			strconv.FormatInt(e.RowCount, 10),
			strconv.FormatInt(e.DurationMs, 10),
			e.Question,
		})
	}
	format.Table(os.Stdout, columns, rows)

	fmt.Fprintf(os.Stderr, "\n(showing %d of %d)\n", len(result.Data), result.Total)
	return nil
}
