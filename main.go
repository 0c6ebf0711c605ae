package main

import "github.com/longkey1/securechat/cmd"

func main() {
	cmd.Execute()
}
