package model

import "time"

// Location is the reference point of a classroom with its geofence radius.
// Radius and Accuracy are in meters.
type Location struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Radius   float64  `json:"radius"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Class represents a teaching class. Location is nil until the lecturer has
// configured the room coordinates; no attendance session can be opened
// before that.
type Class struct {
	ID         int       `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	LecturerID int       `json:"lecturer_id"`
	Semester   string    `json:"semester"`
	Location   *Location `json:"location,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateClassRequest is the payload for creating or updating a class.
type CreateClassRequest struct {
	Code       string `json:"code" binding:"required,min=2,max=20"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	LecturerID int    `json:"lecturer_id" binding:"required"`
	Semester   string `json:"semester" binding:"required,min=4,max=20"`
}

// SetLocationRequest is the payload for configuring a class's room location.
type SetLocationRequest struct {
	Lat      float64  `json:"lat" binding:"min=-90,max=90"`
	Lng      float64  `json:"lng" binding:"min=-180,max=180"`
	Radius   float64  `json:"radius" binding:"omitempty,gt=0,max=10000"`
	Accuracy *float64 `json:"accuracy" binding:"omitempty,gte=0"`
}

// AddStudentRequest is the payload for enrolling a student into a class.
type AddStudentRequest struct {
	StudentID int `json:"student_id" binding:"required"`
}
