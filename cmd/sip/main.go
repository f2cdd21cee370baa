// sip is the Steam ID processor CLI for running the profile check worker.
package main

import (
	"os"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
