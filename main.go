// carprice is a command-line and web front end for a used car price
// prediction service.
package main

import "github.com/derickschaefer/carprice/cmd"

func main() {
	cmd.Execute()
}
