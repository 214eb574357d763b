// Command agf2json converts a Zemax AGF glass catalog to the JSON catalog
// format read by lensdesign -glass.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/lens.design/internal/glass"
)

func main() {
	input := flag.String("i", "", "input .agf path")
	output := flag.String("o", "", "output .json path (stdout when empty)")
	flag.Parse()

	if *input == "" {
		log.Fatal("-i is required")
	}
	in, err := os.Open(*input)
	if err != nil {
		log.Fatalf("open %s: %v", *input, err)
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create %s: %v", *output, err)
		}
		defer f.Close()
		out = f
	}

	n, err := convert(in, out)
	if err != nil {
		log.Fatalf("convert: %v", err)
	}
	log.Printf("✓ Converted %d glasses", n)
}

func convert(r io.Reader, w io.Writer) (int, error) {
	mats, err := glass.ParseAGF(r)
	if err != nil {
		return 0, err
	}
	if len(mats) == 0 {
		return 0, fmt.Errorf("no glasses in catalog")
	}
	return len(mats), glass.WriteJSON(w, mats)
}
