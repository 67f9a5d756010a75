package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"cookbook/internal/models"
)

// Generator рендерит карточку рецепта.
type Generator interface {
	RecipeCard(w io.Writer, card RecipeCard) error
}

type RecipeCard struct {
	Recipe        *models.Recipe
	Instructions  string // plain text, строки через \n
	Picture       []byte // необязательно
	PictureFormat string // jpeg | png | gif
}

// RecipeCardGenerator печатает карточку рецепта на A4.
type RecipeCardGenerator struct {
	FontPath string // путь до TTF с кириллицей, например "assets/fonts/DejaVuSans.ttf"
	fontName string
}

func NewRecipeCardGenerator(fontPath string) *RecipeCardGenerator {
	return &RecipeCardGenerator{FontPath: fontPath, fontName: "DejaVu"}
}

func (g *RecipeCardGenerator) RecipeCard(w io.Writer, card RecipeCard) error {
	r := card.Recipe
	if r == nil {
		return fmt.Errorf("recipe card: no recipe")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.DishName, true)
	pdf.SetAuthor(r.AuthorNickname, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	font, tr := g.setupFont(pdf)
	pdf.AddPage()

	// ===== Заголовок
	pdf.SetFont(font, "B", 18)
	pdf.MultiCell(0, 9, tr(r.DishName), "", "C", false)
	pdf.SetFont(font, "", 11)
	sub := fmt.Sprintf("%s  |  %s  |  %.1f (%d)", r.CategoryName, r.AuthorNickname, r.AverageRating, r.RatingCount)
	pdf.CellFormat(0, 7, tr(sub), "", 1, "C", false, 0, "")
	g.hr(pdf)

	if len(card.Picture) > 0 && card.PictureFormat != "" {
		name := fmt.Sprintf("recipe-%d", r.ID)
		opt := gofpdf.ImageOptions{ImageType: card.PictureFormat, ReadDpi: false}
		info := pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(card.Picture))
		if info != nil && pdf.Ok() {
			wMM, hMM := 80.0, 80.0*info.Height()/info.Width()
			pdf.ImageOptions(name, (210-wMM)/2, pdf.GetY()+2, wMM, hMM, true, opt, 0, "")
			pdf.Ln(4)
		} else {
			pdf.ClearError() // картинка необязательна
		}
	}

	// ===== Описание
	if strings.TrimSpace(r.Description) != "" {
		g.sectionTitle(pdf, font, tr("Description"))
		pdf.MultiCell(0, 6, tr(r.Description), "", "L", false)
		pdf.Ln(2)
	}

	// ===== Приготовление
	g.sectionTitle(pdf, font, tr("Instructions"))
	for _, line := range strings.Split(card.Instructions, "\n") {
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(font, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	return pdf.Output(w)
}

// setupFont подключает TTF, если он есть; иначе core Helvetica (только латиница).
func (g *RecipeCardGenerator) setupFont(pdf *gofpdf.Fpdf) (string, func(string) string) {
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			pdf.AddUTF8Font(g.fontName, "", g.FontPath)
			pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
			return g.fontName, func(s string) string { return s }
		}
	}
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

func (g *RecipeCardGenerator) sectionTitle(pdf *gofpdf.Fpdf, font, s string) {
	pdf.SetFont(font, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
}

func (g *RecipeCardGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}
