package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"support-chat/contract"
	"support-chat/domain/chat"
	"support-chat/services"

	"github.com/jung-kurt/gofpdf"
	"github.com/samber/lo"
)

var (
	admin  = chat.Actor{ID: "admin-1", Role: chat.RoleAdmin}
	buyer  = chat.Actor{ID: "buyer-1", Role: chat.RoleBuyer}
	seller = chat.Actor{ID: "seller-1", Role: chat.RoleSeller}
)

type report struct {
	Rooms    int
	Messages int
	Skipped  int
}

// seeder fills an empty store with two demo conversations.
// A room that already holds messages is left untouched.
type seeder struct {
	backend *services.Backend
	log     *slog.Logger
	report  report
}

func (s *seeder) run() (report, error) {
	rfq, err := s.backend.EnsureRFQRoom("rfq-1001", buyer.ID, "Steel pipes, 200 units")
	if err != nil {
		return s.report, err
	}
	if err = s.fill(rfq, s.rfqConversation); err != nil {
		return s.report, err
	}

	product, err := s.backend.EnsureProductRoom("prod-42", seller.ID, "Industrial valve DN50")
	if err != nil {
		return s.report, err
	}
	if err = s.fill(product, s.productConversation); err != nil {
		return s.report, err
	}
	return s.report, nil
}

func (s *seeder) fill(room chat.Room, conversation func(chat.RoomID) error) error {
	s.report.Rooms++
	existing, err := s.backend.Messages(admin, room.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.log.Info("Room already seeded", "room", room.ID, "messages", len(existing))
		s.report.Skipped++
		return nil
	}
	return conversation(room.ID)
}

func (s *seeder) rfqConversation(room chat.RoomID) error {
	question, err := s.send(buyer, room, "Hello, can you quote 200 units of the 2 inch steel pipe?", nil, nil)
	if err != nil {
		return err
	}
	if _, err = s.send(admin, room, "Sure. Which grade and delivery date do you need?", &question.ID, nil); err != nil {
		return err
	}
	sheet, err := s.upload(buyer, "requirements.pdf", datasheet("Steel pipes", "Grade B, 6 m lengths, delivery before the end of the month."))
	if err != nil {
		return err
	}
	if _, err = s.send(buyer, room, "Grade B, requirements attached", nil, &sheet); err != nil {
		return err
	}
	offer, err := s.send(admin, room, "Offer: 42 EUR per unit, delivery in 10 days", nil, nil)
	if err != nil {
		return err
	}
	if _, err = s.backend.SetPinned(admin, offer.ID, true); err != nil {
		return err
	}
	_, err = s.backend.ToggleReaction(buyer, offer.ID, "👍")
	return err
}

func (s *seeder) productConversation(room chat.RoomID) error {
	intro, err := s.send(admin, room, "Your DN50 valve listing is missing a product photo.", nil, nil)
	if err != nil {
		return err
	}
	photo, err := s.upload(seller, "valve.png", swatch(64, 64))
	if err != nil {
		return err
	}
	if _, err = s.send(seller, room, "Here it is", &intro.ID, &photo); err != nil {
		return err
	}
	_, err = s.send(admin, room, "Thanks, the listing is live.", nil, nil)
	return err
}

func (s *seeder) send(actor chat.Actor, room chat.RoomID, content string, replyTo *chat.MessageID, a *chat.Attachment) (chat.Message, error) {
	m, err := s.backend.Send(actor, contract.SendRequest{
		ClientID:   chat.MessageID(fmt.Sprintf("seed-%s-%d", room, s.report.Messages)),
		RoomID:     room,
		Content:    content,
		ReplyToID:  replyTo,
		Attachment: a,
	})
	if err != nil {
		return m, fmt.Errorf("seeding %s: %w", room, err)
	}
	s.report.Messages++
	return m, nil
}

func (s *seeder) upload(actor chat.Actor, name string, data []byte) (chat.Attachment, error) {
	a, err := s.backend.Upload(actor, name, data)
	if err != nil {
		return a, fmt.Errorf("uploading %s: %w", name, err)
	}
	s.log.Debug("Demo file uploaded", "name", name, "url", a.URL)
	return a, nil
}

// datasheet renders a one page PDF.
func datasheet(title, body string) []byte {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(40, 20, title)
	pdf.Ln(20)
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, body, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// swatch renders a blue gradient PNG.
func swatch(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: 100, B: 200, A: 0xff})
		}
	}
	var buf bytes.Buffer
	lo.Must0(png.Encode(&buf, img))
	return buf.Bytes()
}
