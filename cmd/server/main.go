package main

import "plant-photo-backend/cmd"

func main() {
	cmd.Run()
}
