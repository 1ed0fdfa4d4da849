package converter

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docx2pdf/internal/domain"
)

var pdfMagic = []byte("%PDF-")

var disableConfigDir sync.Once

func pdfcpuConfig() *model.Configuration {
	// pdfcpu would otherwise create a config dir under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// checkPDF rejects output that is not a PDF. With deep set the document is
// also parsed and validated by pdfcpu; the page count is returned.
func checkPDF(data []byte, deep bool) (int, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return 0, fmt.Errorf("%w: output is not a PDF", domain.ErrConversionFailed)
	}
	if !deep {
		return 0, nil
	}

	conf := pdfcpuConfig()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: invalid PDF output: %v", domain.ErrConversionFailed, err)
	}
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: count PDF pages: %v", domain.ErrConversionFailed, err)
	}
	return pages, nil
}
