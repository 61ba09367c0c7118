package main

import (
	"github.com/shouni/go-book-spider/cmd"
)

func main() {
	cmd.Execute()
}
