package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlinks/internal/links"
)

// withService opens storage for the duration of one command.
func withService(open opener, run func(cmd *cobra.Command, args []string, svc links.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.close()

		return run(cmd, args, e.service)
	}
}

func newCreateCmd(open opener) *cobra.Command {
	var targetURL, code string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a link",
		Long: `Creates a link for --url. Without --code a random code is generated.

Example:
  linkctl create --url "https://go.dev/doc" --code godocs`,
		Args: cobra.NoArgs,
		RunE: withService(open, func(cmd *cobra.Command, _ []string, svc links.Service) error {
			link, err := svc.Create(cmd.Context(), links.CreateLinkRequest{TargetURL: targetURL, Code: code})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", link.Code, link.TargetURL)
			return nil
		}),
	}

	cmd.Flags().StringVar(&targetURL, "url", "", "target URL (required)")
	cmd.Flags().StringVar(&code, "code", "", "custom code, 6-8 letters or digits")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List links, newest first",
		Args:  cobra.NoArgs,
		RunE: withService(open, func(cmd *cobra.Command, _ []string, svc links.Service) error {
			all, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printLinks(cmd.OutOrStdout(), all)
		}),
	}
}

func newGetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get CODE",
		Short: "Show one link without counting a click",
		Args:  cobra.ExactArgs(1),
		RunE: withService(open, func(cmd *cobra.Command, args []string, svc links.Service) error {
			link, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printLinks(cmd.OutOrStdout(), []links.Link{link})
		}),
	}
}

func newDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CODE",
		Short: "Delete a link",
		Args:  cobra.ExactArgs(1),
		RunE: withService(open, func(cmd *cobra.Command, args []string, svc links.Service) error {
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}
}

func printLinks(w io.Writer, all []links.Link) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCLICKS\tLAST CLICKED\tCREATED\tTARGET")
	for _, l := range all {
		last := "-"
		if l.LastClicked != nil {
			last = l.LastClicked.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			l.Code, l.Clicks, last, l.CreatedAt.UTC().Format(time.RFC3339), l.TargetURL)
	}
	return tw.Flush()
}
