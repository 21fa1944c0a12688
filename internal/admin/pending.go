package admin

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

type pendingCommander struct {
	stream string
	group  string
}

const pendingLongDesc = `Show entries claimed but not yet acknowledged by a consumer group.

A count that keeps growing for one consumer usually means that consumer is stuck
or keeps failing the same records; they are reclaimed by other consumers once the
pending timeout passes.`

func NewPendingCmd(open LogOpener) *cobra.Command {
	cmder := &pendingCommander{}
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show unacknowledged entries per consumer",
		Long:  pendingLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, cfg, closeLog, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLog()

			stream, group := cmder.stream, cmder.group
			if stream == "" {
				stream = cfg.StreamName
			}
			if group == "" {
				group = cfg.ConsumerGroup
			}
			summary, err := l.Pending(cmd.Context(), stream, group)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s pending=%d\n", stream, group, summary.Count)
			consumers := make([]string, 0, len(summary.Consumers))
			for name := range summary.Consumers {
				consumers = append(consumers, name)
			}
			sort.Strings(consumers)
			for _, name := range consumers {
				fmt.Fprintf(out, "  %s\t%d\n", name, summary.Consumers[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cmder.stream, "stream", "", "Stream name (defaults to stream_name)")
	cmd.Flags().StringVar(&cmder.group, "group", "", "Consumer group (defaults to consumer_group)")
	return cmd
}
