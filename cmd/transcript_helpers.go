package cmd

import (
	"github.com/spf13/cobra"

	"github.com/capscade/capscade/internal"
)

// fetchRendered acquires a transcript for the given argument and renders it
// in the requested output format.
func fetchRendered(cmd *cobra.Command, app *internal.App, arg string) (string, error) {
	req, err := internal.BuildRequest(cmd, config, arg)
	if err != nil {
		return "", err
	}

	result, err := app.AcquireTranscript(cmd.Context(), req)
	if err != nil {
		return "", err
	}

	return internal.RenderTranscript(result, req.Format)
}
