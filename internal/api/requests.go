package api

import "mime/multipart"

type createRequest struct {
	Name  string                  `form:"name" validate:"required"`
	Files []*multipart.FileHeader `form:"files" validate:"required,min=1"`
}

type addFilesRequest struct {
	Name  string                  `form:"nombre_db_vectorial" validate:"required"`
	Files []*multipart.FileHeader `form:"files" validate:"required,min=1"`
}

type searchRequest struct {
	Name   string `form:"name_database" validate:"required"`
	Query  string `form:"query" validate:"required"`
	Source string `form:"fuente"`
}

type indexRequest struct {
	Name string `form:"nombre_db_vectorial" validate:"required"`
}

type sourceRequest struct {
	Name   string `form:"nombre_db_vectorial" validate:"required"`
	Source string `form:"fuente" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type searchResult struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
	Score       float64        `json:"score"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type sourcesResponse struct {
	Sources []string `json:"sources"`
}

type textsResponse struct {
	Texts []string `json:"texts"`
}
