package search

// Subset of the Sketchfab v3 search response

type apiResponse struct {
	Results []apiModel `json:"results"`
	Next    string     `json:"next"`
}

type apiModel struct {
	UID        string        `json:"uid"`
	Name       string        `json:"name"`
	ViewerURL  string        `json:"viewerUrl"`
	Archives   apiArchives   `json:"archives"`
	Thumbnails apiThumbnails `json:"thumbnails"`
}

type apiArchives struct {
	GLTF *apiArchive `json:"gltf"`
}

type apiThumbnails struct {
	Images []apiImage `json:"images"`
}

type apiArchive struct {
	Size int64 `json:"size"`
}

type apiImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
