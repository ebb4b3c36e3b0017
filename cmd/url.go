package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
)

func newURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Prints the search url and output filename for a job title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			title, _ := cmd.Flags().GetString("job-title")
			location, _ := cmd.Flags().GetString("location")
			baseURL, _ := cmd.Flags().GetString("base-url")
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, crawler.BuildSearchURL(baseURL, title, location)); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, crawler.OutputFilename(title, crawler.DefaultOutputSuffix))
			return err
		},
	}
	cmd.Flags().String("job-title", "", "job title to search for")
	cmd.Flags().String("location", "", "location term, e.g. a state code")
	cmd.Flags().String("base-url", crawler.DefaultBaseURL, "job board base url")
	_ = cmd.MarkFlagRequired("job-title")
	return cmd
}
