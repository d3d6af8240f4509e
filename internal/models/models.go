package models

// User is the signed-in operator as returned by the auth API.
type User struct {
	ID       string `json:"id" yaml:"id"`
	Email    string `json:"email" yaml:"email"`
	Name     string `json:"name" yaml:"name"`
	Role     string `json:"role" yaml:"role"`
	Seller   string `json:"seller,omitempty" yaml:"seller,omitempty"`
	SellerID string `json:"sellerId,omitempty" yaml:"seller_id,omitempty"`
}

// UserPatch carries the fields to merge into the current user. Nil fields are left alone.
type UserPatch struct {
	Email    *string
	Name     *string
	Role     *string
	Seller   *string
	SellerID *string
}

// Apply returns u with every non-nil field of p copied over.
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Seller != nil {
		u.Seller = *p.Seller
	}
	if p.SellerID != nil {
		u.SellerID = *p.SellerID
	}
	return u
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.Role == nil && p.Seller == nil && p.SellerID == nil
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the login reply. The backend has shipped both the
// mongo-style (_id, username) and plain (id, name) field names.
type LoginResponse struct {
	MongoID  string `json:"_id"`
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Seller   string `json:"seller"`
	SellerID string `json:"sellerId"`
	Token    string `json:"token"`
}

// User maps the reply onto the session user.
func (r LoginResponse) User() User {
	u := User{
		ID:       r.MongoID,
		Name:     r.Username,
		Email:    r.Email,
		Role:     r.Role,
		Seller:   r.Seller,
		SellerID: r.SellerID,
	}
	if u.ID == "" {
		u.ID = r.ID
	}
	if u.Name == "" {
		u.Name = r.Name
	}
	return u
}

// ProcessedResult is the background-removal outcome for one captured image.
type ProcessedResult struct {
	Index     int    `json:"index" yaml:"index"`
	Success   bool   `json:"success" yaml:"success"`
	OutputURL string `json:"output_image_url,omitempty" yaml:"output_image_url,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProductUpload is the product-creation payload. It is never persisted locally.
type ProductUpload struct {
	ImageURLs []string `json:"image-urls" validate:"required,min=1,dive,required"`
	ProductID string   `json:"productId" validate:"required"`
	SKUID     string   `json:"skuId" validate:"required"`
	UserID    string   `json:"userId" validate:"required"`
	Username  string   `json:"username"`
	Seller    string   `json:"seller,omitempty"`
	SellerID  string   `json:"sellerId,omitempty"`
}

// Dashboard is the per-user upload summary shown on the home and profile screens.
type Dashboard struct {
	Stats       DashboardStats `json:"stats" yaml:"stats"`
	MonthlyData *MonthlySeries `json:"monthlyData,omitempty" yaml:"monthly_data,omitempty"`
}

type DashboardStats struct {
	Products      int     `json:"products" yaml:"products"`
	Images        int     `json:"images" yaml:"images"`
	MonthlyGrowth float64 `json:"monthlyGrowth" yaml:"monthly_growth"`
}

// MonthlySeries is the chart-shaped monthly trend: one label per month and
// one dataset per plotted series.
type MonthlySeries struct {
	Labels   []string  `json:"labels" yaml:"labels"`
	Datasets []Dataset `json:"datasets" yaml:"datasets"`
	Legend   []string  `json:"legend,omitempty" yaml:"legend,omitempty"`
}

type Dataset struct {
	Data []float64 `json:"data" yaml:"data"`
}
