package cli

import (
	"context"
	"os"
)

// Execute runs the knit CLI with args and returns an error if any command
// fails. Logs go to stderr at the configured level, or debug with
// --verbose.
//
//	func main() {
//	    if err := cli.Execute(ctx, os.Args[1:]); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context, args []string) error {
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
