package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/mberat/sonoreport/internal/models"
)

const systemTemplate = "You are an expert Breast Radiologist writing a clinical ultrasound report " +
	"in standard radiology format. Write ONLY the complete report with all required sections. " +
	"Use BI-RADS standardized terminology and sentence structures. Do NOT include any introductory " +
	"text like \"Here is the report\" or \"Certainly\". Start directly with \"ULTRASOUND REPORT\"."

const defaultClinicalHistory = "Routine breast imaging examination."

// BuildReportPrompt assembles the single generation prompt: the BI-RADS
// guideline passages retrieved for this finding, the patient context, the
// lesion descriptors, and the required output skeleton. Every provided
// finding field is serialized exactly once.
func BuildReportPrompt(finding models.Finding, passages []models.ScoredPassage, now time.Time) string {
	var b strings.Builder

	b.WriteString("BI-RADS GUIDELINES (CONTEXT):\n")
	b.WriteString(FormatPassages(passages))
	b.WriteString("\n")

	b.WriteString("PATIENT INFORMATION:\n")
	if finding.PatientID != "" {
		fmt.Fprintf(&b, "- Patient ID: %s\n", finding.PatientID)
	}
	if finding.PatientAge > 0 {
		fmt.Fprintf(&b, "- Age: %d years\n", finding.PatientAge)
	}
	if finding.Gender != "" {
		fmt.Fprintf(&b, "- Gender: %s\n", finding.Gender)
	}
	if finding.Laterality != "" {
		fmt.Fprintf(&b, "- Laterality: %s\n", finding.Laterality)
	}
	fmt.Fprintf(&b, "- Report Date: %s\n", now.Format("02.01.2006"))
	fmt.Fprintf(&b, "- Report Time: %s\n", now.Format("15:04"))
	b.WriteString("\n")

	b.WriteString("CLINICAL HISTORY:\n")
	history := finding.ClinicalHistory
	if history == "" {
		history = defaultClinicalHistory
	}
	b.WriteString(history)
	b.WriteString("\n\n")

	b.WriteString("ULTRASOUND FINDINGS (from segmentation analysis):\n")
	fmt.Fprintf(&b, "- Lesion Type: %s\n", finding.LesionType)
	if finding.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", finding.Location)
	}
	if finding.SizeMM > 0 {
		fmt.Fprintf(&b, "- Size: %d mm\n", finding.SizeMM)
	}
	fmt.Fprintf(&b, "- Shape: %s\n", finding.Shape)
	fmt.Fprintf(&b, "- Margin: %s\n", finding.Margin)
	fmt.Fprintf(&b, "- Echo Pattern: %s\n", finding.EchoPattern)
	b.WriteString("\n")

	b.WriteString(`OUTPUT REQUIREMENTS:
- Write a complete professional radiology report starting with the header section
- Follow standard radiology report format exactly as shown below
- Format exactly as follows (include all sections):

ULTRASOUND REPORT

FINDINGS:
[Describe the findings using BI-RADS standardized terminology. Include location, size, shape, margin, echo pattern, and any additional relevant observations.]

IMPRESSION:
[Provide the BI-RADS category (0-6) and clinical interpretation using standard BI-RADS language.]

RECOMMENDATION:
[Provide clinical recommendations based on BI-RADS category and findings. Include follow-up imaging, biopsy recommendations, or routine screening as appropriate.]
`)

	return b.String()
}

// FormatPassages renders retrieved passages with their source tags.
func FormatPassages(passages []models.ScoredPassage) string {
	var b strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&b, "Source: %s\n%s\n\n", p.Source, p.Text)
	}
	return b.String()
}

const translateSystemTemplate = "You are a medical translator specializing in radiology reports. " +
	"Translate the following English radiology report to German, maintaining the exact format and structure. " +
	"Translate \"ULTRASOUND REPORT\" to \"ULTRASCHALLBEFUND\", \"FINDINGS\" to \"BEFUND\", " +
	"\"IMPRESSION\" to \"EINDRUCK\" and \"RECOMMENDATION\" to \"EMPFEHLUNG\". " +
	"Keep BI-RADS categories as \"BI-RADS\". Use standard German medical terminology. " +
	"Do NOT add any introductory text or meta-commentary. Output ONLY the complete German translation."

// BuildTranslatePrompt wraps an English report for German translation.
func BuildTranslatePrompt(report string) string {
	return "English Report:\n" + report
}
