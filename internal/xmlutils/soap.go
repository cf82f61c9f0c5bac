// Package xmlutils provides XML-related utility functions used throughout the application.
package xmlutils

import (
	"fmt"
	"strings"

	"gopkg.in/xmlpath.v2"
)

// xmlpath matches on local element names, so the namespace prefixes the
// gateway uses (SOAP-ENV, ns2) do not appear in the expression.
const soapReturnXPath = "/Envelope/Body/getIncomingTransactionResponse/return"

var soapReturnPath = xmlpath.MustCompile(soapReturnXPath)

// ExtractSOAPReturn pulls the inner transaction payload out of a
// getIncomingTransaction SOAP response envelope. It returns an empty string
// when the envelope carries no payload.
func ExtractSOAPReturn(envelope string) (string, error) {
	root, err := xmlpath.Parse(strings.NewReader(envelope))
	if err != nil {
		return "", fmt.Errorf("failed to parse SOAP envelope: %w", err)
	}

	value, ok := soapReturnPath.String(root)
	if !ok {
		return "", nil
	}
	return value, nil
}

// StripCDATA unwraps the outer CDATA section of a document, if present.
// Documents without a CDATA wrapper are returned unchanged.
func StripCDATA(raw string) string {
	start := strings.Index(raw, "<![CDATA[")
	if start < 0 {
		return raw
	}
	end := strings.Index(raw, "]]>")
	if end < 0 || end < start {
		return raw
	}
	return raw[start+len("<![CDATA[") : end]
}

// SplitDocuments splits a payload that may contain several concatenated XML
// documents into individual documents. The gateway separates documents only
// by their XML declarations.
func SplitDocuments(payload string) []string {
	const marker = "<?xml version"

	if !strings.Contains(payload, marker) {
		if strings.TrimSpace(payload) == "" {
			return nil
		}
		return []string{payload}
	}

	parts := strings.Split(payload, marker)
	// parts[0] is whatever precedes the first declaration.
	docs := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			continue
		}
		docs = append(docs, marker+part)
	}
	return docs
}
