package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fedquery/internal/domain"
	"fedquery/internal/format"
)

func newAskCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a natural-language question across the configured stores",
		Long: `Send a natural-language question to the server, which plans queries against
MySQL and InfluxDB, runs them, and fuses the results into one answer.

Without arguments the question is read from stdin; on a terminal this starts
an interactive session.`,
		Example: `  # One-shot question
  fedq ask "average cpu temperature of the web servers over the last day"

  # Pipe a question in
  echo "disk usage of db-3" | fedq ask

  # Interactive session
  fedq ask`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question != "" {
				return runAsk(cmd, client, question)
			}

			if term.IsTerminal(int(os.Stdin.Fd())) {
				return runInteractive(cmd, client)
			}

			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			question = strings.TrimSpace(string(data))
			if question == "" {
				return fmt.Errorf("provide a question as arguments or on stdin")
			}
			return runAsk(cmd, client, question)
		},
	}
	return cmd
}

func runInteractive(cmd *cobra.Command, client *Client) error {
	fmt.Fprintln(os.Stderr, `Interactive session. Type "exit" or "quit" to leave.`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "fedq> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		// Keep the session alive on per-question failures.
		if err := runAsk(cmd, client, question); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

type answerResult struct {
	Rows         []domain.Row `json:"rows"`
	Warnings     []string     `json:"warnings"`
	StrategyUsed string       `json:"strategy_used"`
	Queries      []struct {
		Store     string `json:"store"`
		Query     string `json:"query"`
		RowCount  int    `json:"row_count"`
		ElapsedMs int64  `json:"elapsed_ms"`
		Attempts  int    `json:"attempts"`
	} `json:"queries"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

func runAsk(cmd *cobra.Command, client *Client, question string) error {
	body := map[string]interface{}{"question": question}
	resp, err := client.Do("POST", "/answer", nil, body)
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

	style := outputStyle(cmd)
	if style == format.StyleJSON {
		// Print the whole payload, including per-store queries.
		var pretty interface{}
		if err := json.Unmarshal(respBody, &pretty); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return format.PrintJSON(os.Stdout, pretty)
	}

	var result answerResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if err := format.Render(os.Stdout, result.Rows, style); err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	if style == format.StyleTable || style == format.StyleMarkdown {
		fmt.Fprintf(os.Stderr, "\n(%d rows, strategy %s, %dms)\n",
			len(result.Rows), result.StrategyUsed, result.ElapsedMs)
	}
	return nil
}
