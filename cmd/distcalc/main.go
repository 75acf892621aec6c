// Command distcalc runs a coordinator or a worker node.
package main

import "yqhp/distcalc/cmd"

func main() {
	cmd.Execute()
}
