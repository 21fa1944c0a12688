package admin

import (
	"fmt"
	"os"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/producer"
	"github.com/spf13/cobra"
)

type publishCommander struct {
	eventType   string
	itemID      string
	payload     string
	payloadFile string
}

const publishLongDesc = `Append one change event to the catalog stream.

Create and update events need a JSON item payload, given inline or from a file.
Delete events carry no payload.

Example:
  catalog-sync-admin publish --type create --item sku-1 --payload '{"id":"sku-1","name":"Desk lamp"}'
  catalog-sync-admin publish --type update --item sku-1 --payload-file item.json
  catalog-sync-admin publish --type delete --item sku-1`

func NewPublishCmd(open LogOpener) *cobra.Command {
	cmder := &publishCommander{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a change event",
		Long:  publishLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := cmder.readPayload()
			if err != nil {
				return err
			}
			l, cfg, closeLog, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLog()

			id, err := producer.NewProducer(l, cfg.StreamName).Publish(cmd.Context(), cmder.eventType, cmder.itemID, payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&cmder.eventType, "type", "", "Event type: create, update or delete")
	cmd.Flags().StringVar(&cmder.itemID, "item", "", "Catalog item id")
	cmd.Flags().StringVar(&cmder.payload, "payload", "", "Item JSON")
	cmd.Flags().StringVar(&cmder.payloadFile, "payload-file", "", "Path to a file holding the item JSON")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("item")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file")
	return cmd
}

func (c *publishCommander) readPayload() ([]byte, error) {
	if c.payloadFile != "" {
		b, err := os.ReadFile(c.payloadFile)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return b, nil
	}
	if c.payload == "" {
		return nil, nil
	}
	return []byte(c.payload), nil
}
