// Package postprocess turns engine output into files on disk.
//
// For every run it creates a timestamped directory under the output root,
// writes a metadata.json sidecar, watermarks each image and saves it twice:
// a lossless PNG and a JPEG at quality 95.
//
// Layout of one run:
//
//	outputs/
//	  20260115_142233/
//	    metadata.json
//	    my_image_1.png
//	    my_image_1.jpg
//	    my_image_2.png
//	    my_image_2.jpg
//
// Nothing is rolled back on failure: files written before an error stay.
package postprocess
