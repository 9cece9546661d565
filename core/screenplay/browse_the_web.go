package screenplay

import (
	"fmt"

	"github.com/matspina/screen-play-wright/infrastructure/browser"
)

// BrowseTheWebAbility is the name under which BrowseTheWeb is registered.
const BrowseTheWebAbility = "BrowseTheWeb"

// BrowseTheWeb lets an actor drive a browser page.
type BrowseTheWeb struct {
	page browser.Page
}

// BrowseTheWebWith binds a page.
func BrowseTheWebWith(page browser.Page) *BrowseTheWeb {
	return &BrowseTheWeb{page: page}
}

func (b *BrowseTheWeb) AbilityName() string {
	return BrowseTheWebAbility
}

// Page returns the bound page.
func (b *BrowseTheWeb) Page() browser.Page {
	return b.page
}

// BrowseTheWebAs returns the page of an actor able to browse the web.
func BrowseTheWebAs(actor *Actor) (browser.Page, error) {
	ab, err := actor.AbilityTo(BrowseTheWebAbility)
	if err != nil {
		return nil, err
	}
	btw, ok := ab.(*BrowseTheWeb)
	if !ok || btw.page == nil {
		return nil, fmt.Errorf("%s has no page to browse: %w", actor.Name(), ErrMissingAbility)
	}
	return btw.page, nil
}
