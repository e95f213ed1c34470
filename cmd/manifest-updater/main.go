package main

import "github.com/oshokin/manifest-updater/cmd/manifest-updater/cmd"

func main() {
	cmd.Execute()
}
