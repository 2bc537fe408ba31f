// Package dashboard provides the embedded web UI for mcdash.
//
// The page is compiled into the binary with the embed directive and served
// by the server package at "/". Its {{.PageTitle}} and {{.HeaderTitle}}
// placeholders are filled from the upstream configuration on every request,
// and it renders updates received from /api/sse.
package dashboard

import "embed"

// Assets holds the dashboard web UI:
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
