package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"fedquery/internal/format"
)

func newCatalogCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the federated catalog",
		Long: `List every store, collection and field the server currently knows about,
plus the links used to join relational rows with series data.`,
		Example: `  fedq catalog
  fedq catalog --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(cmd, client)
		},
	}
	return cmd
}

func runCatalog(cmd *cobra.Command, client *Client) error {
	resp, err := client.Do("GET", "/catalog", nil, nil)
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
		Version string `json:"version"`
		Stores  map[string][]struct {
			Name   string `json:"name"`
			Fields []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"fields"`
		} `json:"stores"`
		Links []struct {
			Relational string `json:"relational"`
			Series     string `json:"series"`
		} `json:"links"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	stores := make([]string, 0, len(result.Stores))
	for name := range result.Stores {
		stores = append(stores, name)
	}
	sort.Strings(stores)

	columns := []string{"store", "collection", "field", "type"}
	var rows [][]string
	for _, store := range stores {
		for _, coll := range result.Stores[store] {
			for _, f := range coll.Fields {
				rows = append(rows, []string{store, coll.Name, f.Name, f.Type})
			}
		}
	}
	format.Table(os.Stdout, columns, rows)

	if len(result.Links) > 0 {
		fmt.Fprintln(os.Stdout)
		linkRows := make([][]string, 0, len(result.Links))
		for _, l := range result.Links {
			linkRows = append(linkRows, []string{l.Relational, l.Series})
		}
		format.Table(os.Stdout, []string{"relational", "series"}, linkRows)
	}

	fmt.Fprintf(os.Stderr, "\n(catalog version %s)\n", result.Version)
	return nil
}
