// Package printing renders the DAMDFE, the printed auxiliary document of an
// authorized manifest.
//
// The HTML comes from html/template files: an embedded default that can be
// overridden by files in a template directory (reloaded on change when a
// TemplateWatcher runs). The PDF is produced by a headless Chrome through
// chromedp, either launched locally or reached through a remote DevTools URL.
//
//	store, _ := printing.NewTemplateStore(cfg.Printing.TemplateDir, logger)
//	renderer := printing.NewChromedpRenderer(printing.ConfigFromPrinting(cfg.Printing, logger))
//	gen := printing.NewGenerator(store, renderer, logger)
//	pdf, err := gen.RenderPDF(ctx, m, manifest.IssuerOf(tenant))
package printing
