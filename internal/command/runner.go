package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
)

// Executor is the part of the coordinator the runner drives.
type Executor interface {
	ExecuteTask(ctx context.Context, lower, upper float64) (float64, error)
	Kill(ctx context.Context, count, sleepSeconds int) (int, error)
}

// Summary counts what a Run processed.
type Summary struct {
	Integrations int
	Kills        int
	Skipped      int
}

// Runner executes a command stream against an Executor.
type Runner struct {
	executor Executor
	out      io.Writer
	logger   *zap.Logger
}

// NewRunner creates a runner writing one result per line to out.
func NewRunner(executor Executor, out io.Writer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		executor: executor,
		out:      out,
		logger:   logger,
	}
}

// Run reads commands from in until it is exhausted or ctx is done. Malformed
// lines are logged and skipped. Commands run one at a time in input order.
func (r *Runner) Run(ctx context.Context, in io.Reader) (Summary, error) {
	var summary Summary

	scanner := bufio.NewScanner(in)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		cmd, err := Parse(scanner.Text())
		if err != nil {
			r.logger.Warn("skipping command", zap.Int("line", lineNo), zap.Error(err))
			summary.Skipped++
			continue
		}
		if cmd == nil {
			continue
		}

		switch cmd.Kind {
		case KindKill:
			killed, err := r.executor.Kill(ctx, cmd.Count, cmd.SleepSeconds)
			if err != nil {
				return summary, fmt.Errorf("line %d: %w", lineNo, err)
			}
			r.logger.Info("kill complete",
				zap.Int("line", lineNo),
				zap.Int("requested", cmd.Count),
				zap.Int("killed", killed),
			)
			summary.Kills++

		case KindIntegrate:
			value, err := r.executor.ExecuteTask(ctx, cmd.Lower, cmd.Upper)
			if err != nil {
				return summary, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if _, err := io.WriteString(r.out, strconv.FormatFloat(value, 'g', -1, 64)+"\n"); err != nil {
				return summary, fmt.Errorf("write result: %w", err)
			}
			summary.Integrations++
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read commands: %w", err)
	}
	return summary, nil
}
