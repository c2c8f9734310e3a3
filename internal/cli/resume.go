package cli

import (
	"encoding/base64"

	"github.com/spf13/cobra"

	"github.com/webpreempt/sage/internal/service"
)

func newResumeCommand(root *RootOptions) *cobra.Command {
	var continuation string
	var continuationID string

	cmd := &cobra.Command{
		Use:   "resume <dataset>",
		Short: "Resume a suspended query from its continuation token or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (continuation == "") == (continuationID == "") {
				return WrapExitError(ExitCommandError, "exactly one of --continuation or --continuation-id is required", nil)
			}
			return runResume(root, args[0], continuation, continuationID)
		},
	}
	cmd.Flags().StringVar(&continuation, "continuation", "", "base64-encoded continuation token (stateless manifest)")
	cmd.Flags().StringVar(&continuationID, "continuation-id", "", "saved-plan id (stateful manifest)")
	return cmd
}

func runResume(root *RootOptions, dataset, continuation, continuationID string) error {
	registry, err := root.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading manifest", err)
	}
	svc := service.New(registry, root.Logger())

	req := service.Request{Dataset: dataset, ContinuationID: continuationID}
	if continuation != "" {
		token, err := base64.StdEncoding.DecodeString(continuation)
		if err != nil {
			return WrapExitError(ExitCommandError, "decoding --continuation", err)
		}
		req.Continuation = token
	}

	resp, err := svc.Query(req)
	if err != nil {
		return WrapExitError(ExitFailure, "resume failed", err)
	}
	return printResponse(resp)
}
