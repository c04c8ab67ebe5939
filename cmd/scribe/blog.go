package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribeflow/internal/bundle"
	"scribeflow/internal/domain"
)

func newExportCmd(rt *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Save a completed article with its images as a zip bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			job, err := rt.api.Status(ctx, args[0])
			if err != nil {
				return err
			}
			if job.Status != domain.JobStatusCompleted || job.Result == nil {
				return fmt.Errorf("job %s is %s, not completed", job.ID, job.Status)
			}
			markdown, err := rt.api.Artifact(ctx, job.Result.DownloadURL)
			if err != nil {
				return err
			}
			b, err := bundle.Build(ctx, rt.api, job.Result.Title, markdown, job.Result.Images, time.Now())
			if err != nil {
				return err
			}
			path, err := saveFile(ctx, out, b.Name, b.Data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "directory to save the bundle in")
	return cmd
}

func newEditCmd(rt *runtime) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "edit <job-id>",
		Short: "Replace the markdown of a completed article",
		Long: `Replace the markdown of a completed article with the content of --file.
Use --file - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			content, err := readContent(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if err := rt.api.UpdateContent(cmd.Context(), args[0], content); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Blog updated.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "markdown file with the new content, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPublishCmd(rt *runtime) *cobra.Command {
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a completed article to a third-party platform",
	}
	publish.AddCommand(&cobra.Command{
		Use:   "devto <job-id>",
		Short: "Publish to Dev.to with the key saved in the profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			receipt, err := rt.api.PublishDevTo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), receipt.Message)
			if receipt.URL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), receipt.URL)
			}
			return nil
		},
	})
	return publish
}

func newViewCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "view <job-id>",
		Short: "Print the public view of a completed article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blog, err := rt.api.PublicBlog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\nby %s\n", blog.Title, blog.Author)
			if blog.MetaDescription != "" {
				fmt.Fprintf(out, "%s\n", blog.MetaDescription)
			}
			fmt.Fprintf(out, "\n%s", blog.Content)
			if !strings.HasSuffix(blog.Content, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func readContent(stdin io.Reader, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}
