// Command ormpack inspects ormpack payloads and the type and zone tables
// they refer to.
//
// See ormpack -help for a list of all commands.
package main

func main() {
	Execute()
}
