package graphql

const restaurantFields = `id name description city`

const listRestaurantsQuery = `query ListRestaurants {
  listRestaurants {
    items { ` + restaurantFields + ` }
  }
}`

const createRestaurantMutation = `mutation CreateRestaurant($input: CreateRestaurantInput!) {
  createRestaurant(input: $input) { ` + restaurantFields + ` }
}`

const deleteRestaurantMutation = `mutation DeleteRestaurant($input: DeleteRestaurantInput!) {
  deleteRestaurant(input: $input) { id }
}`

const onCreateRestaurantSubscription = `subscription OnCreateRestaurant {
  onCreateRestaurant { ` + restaurantFields + ` }
}`
