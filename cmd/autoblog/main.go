// Command autoblog runs the blog automation service and its admin tasks.
package main

import (
	"fmt"
	"os"

	_ "autoblog/internal/integrations/facebook"
	_ "autoblog/internal/integrations/pixabay"
	_ "autoblog/internal/integrations/rankmath"
	_ "autoblog/internal/integrations/scheduler"
	_ "autoblog/internal/integrations/twitter"
	_ "autoblog/internal/integrations/yoast"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
