package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server/api"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/httpclient"
	"github.com/spf13/cobra"
)

type similarCommander struct {
	apiTarget string
	k         int
	minScore  float64
	category  string
	timeout   time.Duration
}

const similarLongDesc = `Query a running serving API for items similar to one catalog item.

Example:
  catalog-sync-admin similar sku-1
  catalog-sync-admin similar sku-1 --k 5 --min-score 0.6 --category lighting
  catalog-sync-admin similar sku-1 --api-target http://catalog-sync:8080`

func NewSimilarCmd() *cobra.Command {
	cmder := &similarCommander{}
	cmd := &cobra.Command{
		Use:   "similar <item-id>",
		Short: "Find items similar to an item",
		Long:  similarLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := cmder.run(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no similar items")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%d\t%s\t%.4f\n", i+1, r.ItemID, r.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", "http://localhost:8080", "Serving API URL")
	cmd.Flags().IntVar(&cmder.k, "k", 0, "Number of results (server default when 0)")
	cmd.Flags().Float64Var(&cmder.minScore, "min-score", 0, "Minimum cosine similarity (server threshold when unset)")
	cmd.Flags().StringVar(&cmder.category, "category", "", "Comma separated category filter")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}

func (c *similarCommander) run(cmd *cobra.Command, itemID string) (*api.SimilarResponse, error) {
	query := url.Values{}
	if c.k > 0 {
		query.Set("k", strconv.Itoa(c.k))
	}
	if cmd.Flags().Changed("min-score") {
		query.Set("min_score", strconv.FormatFloat(c.minScore, 'f', -1, 64))
	}
	if c.category != "" {
		query.Set("category", c.category)
	}
	path := "api/v1/items/" + url.PathEscape(itemID) + "/similar"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	client := httpclient.NewConnFromConfig(&httpclient.Config{Name: "serving", Endpoint: c.apiTarget, Timeout: c.timeout})
	req, err := httpclient.NewHttpRequestBuilder().
		WithEndpoint(client.Endpoint).
		WithPath(path).
		WithMethod(http.MethodGet).
		WithContext(cmd.Context()).
		BuildContentTypeJson()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("serving API returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("serving API returned %d", resp.StatusCode)
	}
	var out api.SimilarResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
