package api

import (
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
)

type SlotResponse struct {
	Date      string  `json:"date"`
	Weekday   string  `json:"weekday"`
	Time      string  `json:"time"`
	Occupied  bool    `json:"occupied"`
	Name      string  `json:"name,omitempty"`
	Surname   string  `json:"surname,omitempty"`
	PatientID string  `json:"patient_id,omitempty"`
	Insurance *string `json:"insurance,omitempty"`
}

type SlotListResponse struct {
	Count int            `json:"count"`
	Slots []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlotResponse(s slot.Slot) SlotResponse {
	return SlotResponse{
		Date:      s.Date,
		Weekday:   s.Weekday,
		Time:      s.Time,
		Occupied:  s.Occupied,
		Name:      s.PatientName,
		Surname:   s.PatientSurname,
		PatientID: s.PatientID,
		Insurance: s.Insurance,
	}
}

func toSlotList(slots []slot.Slot) SlotListResponse {
	resp := SlotListResponse{
		Count: len(slots),
		Slots: make([]SlotResponse, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, toSlotResponse(s))
	}
	return resp
}
