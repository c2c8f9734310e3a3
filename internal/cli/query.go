package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webpreempt/sage/internal/resultsjson"
	"github.com/webpreempt/sage/internal/service"
)

func newQueryCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <dataset> <sparql>",
		Short: "Run a fresh SPARQL SELECT or ASK query against a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(root, args[0], args[1])
		},
	}
	return cmd
}

func runQuery(root *RootOptions, dataset, query string) error {
	registry, err := root.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading manifest", err)
	}
	svc := service.New(registry, root.Logger())

	resp, err := svc.Query(service.Request{Dataset: dataset, Query: query})
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	return printResponse(resp)
}

func printResponse(resp *service.Response) error {
	doc, err := resultsjson.Encode(resp, nil)
	if err != nil {
		return WrapExitError(ExitFailure, "encoding results", err)
	}
	fmt.Println(string(doc))
	if !resp.Done {
		if resp.ContinuationID != "" {
			fmt.Fprintf(os.Stderr, "more results available: resume with --continuation-id %s\n", resp.ContinuationID)
		} else {
			fmt.Fprintln(os.Stderr, "more results available: resume with --continuation <the \"continuation\" field above>")
		}
	}
	return nil
}
