// Command oxyview runs the render pipeline demos: cascaded shadows with a debug HUD, and keyboard
// driven viewpoints.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "oxyview:", err)
		os.Exit(1)
	}
}
