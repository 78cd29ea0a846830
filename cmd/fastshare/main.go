package main

import "github.com/rudransh-shrivastava/fastshare/internal/cli"

func main() {
	cli.Execute()
}
