package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// --- flows ---

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage chatbot flows",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/flows")
		if err != nil {
			return err
		}

		var result struct {
			Flows []struct {
				ID        string `json:"id"`
				Language  string `json:"language"`
				IsActive  bool   `json:"isActive"`
				UpdatedAt string `json:"updatedAt"`
			} `json:"flows"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Flows) == 0 {
			fmt.Println("No flows found.")
			return nil
		}
		for _, f := range result.Flows {
			active := " "
			if f.IsActive {
				active = colorize(colorGreen, "●")
			}
			fmt.Printf("%s %s  %-3s  %s\n", active, colorize(colorCyan, f.ID), f.Language, f.UpdatedAt)
		}
		return nil
	},
}

var flowsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import a flow document and mark it active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading flow file: %w", err)
		}

		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("invalid flow JSON: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/flows", body)
		if err != nil {
			return err
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported flow %s", result.ID)
		return nil
	},
}

func init() {
	flowsCmd.AddCommand(flowsListCmd)
	flowsCmd.AddCommand(flowsImportCmd)
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List chatbot conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/conversations?limit=%d", limit)
		if status != "" {
			path += "&status=" + url.QueryEscape(status)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Conversations []struct {
				ID            string `json:"id"`
				UserName      string `json:"userName"`
				LanguageFlag  string `json:"languageFlag"`
				Status        string `json:"status"`
				MessageCount  int    `json:"messageCount"`
				LastMessageAt string `json:"lastMessageAt"`
			} `json:"conversations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Conversations) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}
		for _, c := range result.Conversations {
			name := c.UserName
			if name == "" {
				name = "(anonymous)"
			}
			fmt.Printf("%s %s  %-8s  %3d msgs  %-20s  %s\n",
				c.LanguageFlag,
				colorize(colorCyan, c.ID[:8]),
				c.Status,
				c.MessageCount,
				name,
				c.LastMessageAt,
			)
		}
		return nil
	},
}

func init() {
	conversationsCmd.Flags().String("status", "", "filter by status (active, closed, handoff)")
	conversationsCmd.Flags().Int("limit", 50, "maximum number of conversations to list")
}

// --- leads ---

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List captured leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/users?limit=%d", limit)
		if search != "" {
			path += "&search=" + url.QueryEscape(search)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Users []struct {
				ID             string `json:"id"`
				Email          string `json:"email"`
				Name           string `json:"name"`
				RestaurantName string `json:"restaurantName"`
				Status         string `json:"status"`
			} `json:"users"`
			Stats struct {
				Total     int `json:"total"`
				Leads     int `json:"leads"`
				Qualified int `json:"qualified"`
				Customers int `json:"customers"`
			} `json:"stats"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Total", "%d (%d leads, %d qualified, %d customers)",
			result.Stats.Total, result.Stats.Leads, result.Stats.Qualified, result.Stats.Customers)
		for _, u := range result.Users {
			fmt.Printf("%s  %-9s  %-30s  %s\n",
				colorize(colorCyan, u.ID[:8]),
				u.Status,
				u.Email,
				u.RestaurantName,
			)
		}
		return nil
	},
}

func init() {
	leadsCmd.Flags().String("search", "", "search by name, email, or restaurant")
	leadsCmd.Flags().Int("limit", 50, "maximum number of leads to list")
}

// --- remember / recall ---

var rememberCmd = &cobra.Command{
	Use:   "remember <text>",
	Short: "Store a text snippet in the chatbot's semantic memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		memType, _ := cmd.Flags().GetString("type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/memory", map[string]any{
			"content": content,
			"type":    memType,
		})
		if err != nil {
			return err
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored memory %s", result.ID)
		return nil
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Semantic search over stored memories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/memory?query=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Memories []struct {
				ID      string  `json:"id"`
				Score   float32 `json:"score"`
				Content string  `json:"content"`
				Type    string  `json:"type"`
			} `json:"memories"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Memories) == 0 {
			fmt.Println("No memories found.")
			return nil
		}
		for i, m := range result.Memories {
			fmt.Printf("\n%s [%s, score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), m.Type, m.Score)
			content := m.Content
			if len(content) > 500 {
				content = content[:500] + "..."
			}
			fmt.Printf("  %s\n", content)
		}
		return nil
	},
}

func init() {
	rememberCmd.Flags().String("type", "faq", "memory type (user_preference, faq, conversation, knowledge)")
	recallCmd.Flags().Int("limit", 5, "maximum number of results")
}
