package main

import (
	"example.com/supplierportal/services/deliverynote/cmd"
)

func main() {
	cmd.Execute()
}
