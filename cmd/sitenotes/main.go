// Command sitenotes manages local notes about places.
package main

import "github.com/mesh-intelligence/sitenotes/internal/cli"

func main() {
	cli.Execute()
}
