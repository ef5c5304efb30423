// ABOUTME: Admin CLI for braid conversation management
// ABOUTME: Lists, inspects, and deletes conversations; streams chat over SSE

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/braid/internal/client"
)

const banner = `
  _               _     _            _           _
 | |__  _ __ __ _(_) __| |       __ _| |_ __ ___ (_)_ __
 | '_ \| '__/ _' | |/ _' |_____ / _' | | '_ ' _ \| | '_ \
 | |_) | | | (_| | | (_| |_____| (_| | | | | | | | | | | |
 |_.__/|_|  \__,_|_|\__,_|      \__,_|_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("BRAID_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := getToken()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list", "ls":
		err = cmdList(baseURL, token)
	case "show":
		err = cmdShow(baseURL, token, args)
	case "delete", "rm":
		err = cmdDelete(baseURL, token, args)
	case "chat":
		err = cmdChat(baseURL, token, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: braid-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  list                    List root conversations")
	fmt.Println("  show <id>               Show a conversation and its side-thread tree")
	fmt.Println("  delete <id>             Delete a conversation and its side threads")
	fmt.Println("  chat <id> <message>     Send a message and stream the reply")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  BRAID_URL               Server base URL (default: http://localhost:8080)")
	fmt.Println("  BRAID_TOKEN             JWT authentication token (required)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export BRAID_TOKEN=\"eyJhbG...\"")
	fmt.Println("  braid-admin list")
	fmt.Println("  braid-admin chat <conversation-id> \"summarize this thread\"")
	fmt.Println()
}

func getToken() string {
	// Check env var first
	if token := os.Getenv("BRAID_TOKEN"); token != "" {
		return token
	}

	// Try to read from token file
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	tokenPath := filepath.Join(configDir, "braid", "token")
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func newClient(baseURL, token string) (*client.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("BRAID_TOKEN environment variable is required")
	}
	return client.New(baseURL, token), nil
}

func cmdList(baseURL, token string) error {
	c, err := newClient(baseURL, token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	page, err := c.ListConversations(ctx, 1, 50)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Conversations")
	cyan.Println("  -------------")

	if len(page.Conversations) == 0 {
		fmt.Println("  (no conversations)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTITLE\tMODEL\tUPDATED")
	fmt.Fprintln(w, "  --\t-----\t-----\t-------")

	for _, conv := range page.Conversations {
		id := truncate(conv.ID, 12)
		title := truncate(conv.Title, 32)
		updated := conv.UpdatedAt
		if t, err := time.Parse(time.RFC3339, conv.UpdatedAt); err == nil {
			updated = t.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", id, title, conv.Model, updated)
	}
	w.Flush()

	if page.HasMore {
		fmt.Printf("  ... and %d more\n", page.TotalCount-len(page.Conversations))
	}
	fmt.Println()

	return nil
}

func cmdShow(baseURL, token string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show <conversation-id>")
	}

	c, err := newClient(baseURL, token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	conv, err := c.GetConversation(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetching conversation: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Conversation")
	cyan.Println("  ------------")
	fmt.Printf("  ID:     %s\n", conv.ID)
	fmt.Printf("  Title:  %s\n", conv.Title)
	fmt.Printf("  Model:  %s (temperature %.1f)\n", conv.Model, conv.Temperature)
	if conv.IsSideThread() {
		fmt.Printf("  Parent: %s (message %s)\n", *conv.ParentConversationID, *conv.ParentMessageID)
	}
	fmt.Println()

	return showThread(ctx, c, conv, 0)
}

// showThread prints a conversation's messages and recurses into the side
// threads hanging off its annotations.
func showThread(ctx context.Context, c *client.Client, conv *client.Conversation, depth int) error {
	indent := strings.Repeat("    ", depth)
	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)

	page, err := c.ListMessages(ctx, conv.ID, 1, 50)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	if depth > 0 {
		yellow.Printf("%s◆ %s\n", indent, conv.Title)
	}

	var children []string
	for _, msg := range page.Messages {
		role := msg.Role
		if role == "assistant" {
			role = color.CyanString(role)
		} else {
			role = color.GreenString(role)
		}
		fmt.Printf("%s  [%s] %s\n", indent, role, truncate(msg.Content, 80))
		for _, ann := range msg.Annotations {
			gray.Printf("%s      ↳ side thread %s on [%d:%d)\n", indent, truncate(ann.ChildConversationID, 12), ann.Start, ann.End)
			children = append(children, ann.ChildConversationID)
		}
	}

	for _, childID := range children {
		child, err := c.GetConversation(ctx, childID)
		if err != nil {
			gray.Printf("%s  (side thread %s unavailable: %v)\n", indent, truncate(childID, 12), err)
			continue
		}
		if err := showThread(ctx, c, child, depth+1); err != nil {
			return err
		}
	}

	if depth == 0 {
		fmt.Println()
	}
	return nil
}

func cmdDelete(baseURL, token string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <conversation-id>")
	}

	c, err := newClient(baseURL, token)
	if err != nil {
		return err
	}

	if err := c.DeleteConversation(context.Background(), args[0]); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Deleted conversation: %s\n", args[0])
	return nil
}

func cmdChat(baseURL, token string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: chat <conversation-id> <message>")
	}

	c, err := newClient(baseURL, token)
	if err != nil {
		return err
	}
	ctx := context.Background()

	session, err := c.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	// Print tokens as they accumulate
	waitErr := make(chan error, 1)
	go func() { waitErr <- session.Wait(ctx) }()

	printed := 0
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	cyan.Print("assistant: ")
	for {
		select {
		case <-ticker.C:
			text := session.Text()
			if len(text) > printed {
				fmt.Print(text[printed:])
				printed = len(text)
			}
			continue
		case err := <-waitErr:
			if err != nil {
				return fmt.Errorf("waiting for stream: %w", err)
			}
		}
		break
	}

	text := session.Text()
	if len(text) > printed {
		fmt.Print(text[printed:])
	}
	fmt.Println()

	if _, err := c.Reconcile(ctx, session, 20); err != nil {
		return fmt.Errorf("reconciling stream: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
