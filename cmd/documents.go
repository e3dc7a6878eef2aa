package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
)

// documentFlags maps each document type to its path flag.
var documentFlags = []struct {
	name    string
	docType model.DocumentType
	usage   string
}{
	{"specifications", model.DocSpecifications, "project specifications (PDF or text)"},
	{"bid-forms", model.DocBidForms, "bid forms (PDF, text or XLSX)"},
	{"plans", model.DocConstructionPlans, "construction plans"},
	{"supplemental", model.DocSupplemental, "addenda and supplemental notices"},
	{"general", model.DocGeneral, "any other document"},
}

// documentPaths holds the values bound to the document flags of one command.
type documentPaths map[model.DocumentType]*string

func addDocumentFlags(cmd *cobra.Command) documentPaths {
	paths := make(documentPaths, len(documentFlags))
	for _, f := range documentFlags {
		paths[f.docType] = cmd.Flags().String(f.name, "", f.usage)
	}
	return paths
}

// resolve returns the document paths that were set.
func (d documentPaths) resolve() map[model.DocumentType]string {
	out := make(map[model.DocumentType]string)
	for dt, p := range d {
		if p != nil && *p != "" {
			out[dt] = *p
		}
	}
	return out
}

func fileSources(paths map[model.DocumentType]string, pdf ocr.Extractor) map[model.DocumentType]ocr.Source {
	sources := make(map[model.DocumentType]ocr.Source, len(paths))
	for dt, p := range paths {
		sources[dt] = ocr.SourceForPath(p, pdf)
	}
	return sources
}
