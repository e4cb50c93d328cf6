package models

import "time"

type Site struct {
	SiteID    string    `json:"site_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	OwnerID   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateSiteRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}
