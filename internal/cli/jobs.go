package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewJobsCmd создаёт группу команд для заданий оркестратора.
func NewJobsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage engine jobs",
	}

	cmd.AddCommand(
		newJobsListCmd(clientFn, outputFn),
		newJobsRunCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs with run statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "RUNS", "FAILURES", "LAST_RUN", "DURATION", "LAST_ERROR"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{
					j.Name,
					strconv.Itoa(j.Runs),
					strconv.Itoa(j.Failures),
					j.LastRun,
					j.LastDuration,
					trunc(j.LastError, 60),
				}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}
}

func newJobsRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run NAME",
		Short: "Run a job immediately, outside its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.RunJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job %s completed in %s", job.Name, job.LastDuration))
			out.Print(
				[]string{"NAME", "RUNS", "FAILURES", "LAST_RUN", "DURATION"},
				[][]string{{
					job.Name,
					strconv.Itoa(job.Runs),
					strconv.Itoa(job.Failures),
					job.LastRun,
					job.LastDuration,
				}},
				job,
			)
			return nil
		},
	}
}
