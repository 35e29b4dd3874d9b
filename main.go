package main

import (
	"github.com/sjzar/tubescribe/cmd/tubescribe"
)

func main() {
	tubescribe.Execute()
}
