package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mergelens/pkg/models"
)

// ReviewCommand runs a single review from the command line, the same
// pipeline the webhook server uses.
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review one merge request and exit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "project",
				Usage:    "Project ID or URL-encoded path",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "mr",
				Usage:    "Merge request IID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "sha",
				Usage: "Head commit SHA (resolved from the MR when omitted)",
			},
		},
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c, true)
			if err != nil {
				return err
			}

			pipe, host, err := buildPipeline(c.Context, settings)
			if err != nil {
				return err
			}

			req := models.ReviewRequest{
				ProjectID: c.String("project"),
				MRIID:     c.Int("mr"),
				HeadSHA:   c.String("sha"),
			}
			if req.HeadSHA == "" {
				mr, err := host.GetMergeRequest(c.Context, req.ProjectID, req.MRIID)
				if err != nil {
					return fmt.Errorf("resolving merge request: %w", err)
				}
				req.HeadSHA = mr.HeadSHA
				req.Author = mr.Author
			}

			summary := pipe.Run(c.Context, req)

			fmt.Printf("Review %s finished: %s\n", summary.RunID, summary.Status)
			fmt.Printf("  files:    %d selected, %d reviewed, %d failed\n",
				summary.FilesSelected, summary.FilesReviewed, summary.FilesFailed)
			fmt.Printf("  findings: %d total, %d kept\n", summary.FindingsTotal, summary.FindingsKept)
			fmt.Printf("  comments: %d posted, %d skipped, %d failed\n",
				summary.CommentsPosted, summary.CommentsSkipped, summary.CommentsFailed)

			if summary.Status == models.StatusFailed {
				return fmt.Errorf("review failed: %s", summary.Error)
			}
			return nil
		},
	}
}
