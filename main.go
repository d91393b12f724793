// galleryharvest downloads images from gallery previews concurrently.
package main

import "github.com/galleryharvest/galleryharvest/cmd"

func main() {
	cmd.Execute()
}
