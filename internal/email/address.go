package email

import (
	"strings"
)

// Address is an email address with an optional display name.
type Address struct {
	Email string
	Name  string
}

// String formats the address as "Name <email>", or the bare email when there is no name.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// AddressList is an ordered mapping of email address to display name.
type AddressList []Address

// Add appends an address. A repeated email (compared case-insensitively) keeps its
// original position and takes the new display name.
func (l *AddressList) Add(email, name string) {
	for i := range *l {
		if strings.EqualFold((*l)[i].Email, email) {
			(*l)[i].Name = name
			return
		}
	}
	*l = append(*l, Address{Email: email, Name: name})
}

// Contains reports whether the list holds the given email.
func (l AddressList) Contains(email string) bool {
	for _, a := range l {
		if strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

// Emails returns the bare addresses in order.
func (l AddressList) Emails() []string {
	out := make([]string, 0, len(l))
	for _, a := range l {
		out = append(out, a.Email)
	}
	return out
}

// Len returns the number of addresses.
func (l AddressList) Len() int {
	return len(l)
}

// Join formats every address and joins them with ", ".
func (l AddressList) Join() string {
	parts := make([]string, 0, len(l))
	for _, a := range l {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
